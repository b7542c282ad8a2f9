package session

import "xysync/pkg/model"

// View is a visualization component fed with synchronized pairs.
type View interface {
	OnPair(model.Pair)
}

// ViewFactory creates the view for an XY plot of x against y.
type ViewFactory interface {
	NewXYView(x, y model.Channel) (View, error)
}

// ViewReleaser is implemented by factories that keep track of the views they
// create. A session releases a view it could not attach to a channel pair and
// the view of a removed plot.
type ViewReleaser interface {
	ReleaseXYView(View)
}
