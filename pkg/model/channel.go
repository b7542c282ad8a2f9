package model

import "fmt"

// ChannelID identifies a channel in a registry. It is a non-owning handle:
// holders look the channel up again instead of keeping its buffer alive.
type ChannelID string

type Channel struct {
	Name   string
	Labels Labels
}

// returns "CH1{device=psu1,quantity=voltage}"
func (c *Channel) String() string {
	return fmt.Sprintf("%s{%s}", c.Name, c.Labels.String())
}

func (c *Channel) ID() ChannelID {
	return ChannelID(c.String())
}

// PairKey names an ordered pair of channels. (a, b) and (b, a) are distinct.
type PairKey struct {
	A ChannelID
	B ChannelID
}

func (k PairKey) String() string {
	return fmt.Sprintf("%s|%s", k.A, k.B)
}
