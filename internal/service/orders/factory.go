package orders

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onCreated, onSettled, onReady, onCancelRequested actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			"created":            onCreated,
			"pending":            onSettled,
			"on_the_way":         onSettled,
			"delivered":          onSettled,
			"cancelled":          onSettled,
			"ready_for_delivery": onReady,
			"cancel_requested":   onCancelRequested,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, ok
}
