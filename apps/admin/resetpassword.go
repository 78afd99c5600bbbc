package main

import (
	"context"
	"time"

	"github.com/lojf/nextgen/core"
	"github.com/lojf/nextgen/core/staff"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	stf, err := cli.staffRepo.GetStaff(ctx, staff.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err := stf.SetPassword(pwd); err != nil {
		return err
	}
	stf.UpdatedAt = time.Now().UTC()
	if _, err := cli.staffRepo.UpdateStaff(ctx, stf, nil); err != nil {
		return err
	}
	return nil
}
