package registry

import (
	"xysync/pkg/model"
	"xysync/pkg/series"
)

// DeviceRegistry resolves channel IDs to their sample buffers and reports
// channel removal. Components hold ChannelIDs and look buffers up here
// instead of owning them.
type DeviceRegistry interface {
	Buffer(id model.ChannelID) (*series.Buffer, error)

	Channel(id model.ChannelID) (model.Channel, error)

	// OnRemove registers fn to run after a channel is removed. The returned
	// func unregisters it.
	OnRemove(fn func(model.ChannelID)) func()
}

// Store is a DeviceRegistry that channels can be added to and removed from.
type Store interface {
	DeviceRegistry

	AddChannel(ch *model.Channel) (*series.Buffer, error)

	RemoveChannel(id model.ChannelID) error
}
