package schedulingsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/schedule"
)

// Client fetches bookings from the scheduling SaaS REST API.
type Client struct {
	baseURL string
	apiKey  string
}

var _ schedule.BookingSource = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL: conf.Scheduling.BaseURL,
		apiKey:  conf.Scheduling.APIKey,
	}
}

type (
	apiContact struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	apiBooking struct {
		ID          int64        `json:"id"`
		StartsAt    time.Time    `json:"starts_at"`
		UpdatedAt   time.Time    `json:"updated_at"`
		CancelledAt *time.Time   `json:"cancelled_at"`
		Organizer   apiContact   `json:"organizer"`
		Attendees   []apiContact `json:"attendees"`
	}

	apiMeta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	}

	bookingsPage struct {
		Data []apiBooking `json:"data"`
		Meta apiMeta      `json:"meta"`
	}
)

// ListBookings fetches all bookings starting within [from, to), following
// pagination. Cancelled bookings are dropped here so the reconciliation sees
// them as absent and deletes their rows.
func (c *Client) ListBookings(ctx context.Context, from, to time.Time) ([]schedule.Booking, error) {
	var bookings []schedule.Booking

	for page := 1; ; page++ {
		pg, err := c.fetchPage(ctx, from, to, page)
		if err != nil {
			return nil, err
		}

		for _, b := range pg.Data {
			if b.CancelledAt != nil {
				continue
			}
			bkg := schedule.Booking{
				ID:             strconv.FormatInt(b.ID, 10),
				StartsAt:       b.StartsAt,
				UpdatedAt:      b.UpdatedAt,
				OrganizerEmail: b.Organizer.Email,
			}
			for _, att := range b.Attendees {
				bkg.Attendees = append(bkg.Attendees, schedule.Attendee{Name: att.Name, Email: att.Email})
			}
			bookings = append(bookings, bkg)
		}

		if pg.Meta.LastPage == 0 || page >= pg.Meta.LastPage {
			break
		}
	}
	return bookings, nil
}

func (c *Client) fetchPage(ctx context.Context, from, to time.Time, page int) (*bookingsPage, error) {
	req := rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + "/bookings",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Accept":        "application/json",
		},
		QueryParams: map[string]string{
			"starts_at": from.UTC().Format(time.RFC3339),
			"ends_at":   to.UTC().Format(time.RFC3339),
			"page":      strconv.Itoa(page),
		},
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching bookings page")
	}
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("scheduling API returned %d: %s", res.StatusCode, res.Body)
	}

	var pg bookingsPage
	if err := json.Unmarshal([]byte(res.Body), &pg); err != nil {
		return nil, errors.Wrap(err, "decoding bookings page")
	}
	return &pg, nil
}
