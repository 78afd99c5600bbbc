package main

import (
	"context"
	"time"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/staff"
)

// addStaff updates or creates a staff.Staff member.
func (cli *commandLine) addStaff(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	now := time.Now().UTC()
	stf, err := cli.staffRepo.GetStaff(ctx, staff.GetFilter{Email: email})
	if err != nil {
		if err != staff.ErrNotFound {
			return err
		}
		stf = staff.Staff{
			Name:        name,
			Email:       email,
			AccessLevel: staff.LevelVolunteer,
			CreatedAt:   now,
		}
		if isAdmin {
			stf.AccessLevel = staff.LevelAdmin
		}
		if err = stf.SetPassword(pwd); err != nil {
			return err
		}
		stf.IsActive = true
		stf.UpdatedAt = now
		_, err = cli.staffRepo.CreateStaff(ctx, stf)
		return err
	}

	stf.Name = name
	if isAdmin {
		stf.AccessLevel = staff.LevelAdmin
	}
	if err = stf.SetPassword(pwd); err != nil {
		return err
	}
	stf.UpdatedAt = now
	active := true
	_, err = cli.staffRepo.UpdateStaff(ctx, stf, &active)
	return err
}
