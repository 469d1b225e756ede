package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessOrderMessage]  = (*ProcessOrderCommand)(nil)
	_ gocmd.Commander[ScheduleOrderMessage] = (*ScheduleOrderCommand)(nil)
)
