package unique

import (
	"github.com/google/uuid"

	"datecell/internal/model"
)

// NewIDFillFactory returns a FillFactory for UniqueRange layers that gives
// every synthesized block a fresh random id.
func NewIDFillFactory() func(model.Range) model.UniqueRange {
	return func(r model.Range) model.UniqueRange {
		return model.UniqueRange{Range: r, ID: uuid.NewString()}
	}
}

// NewStableIDFillFactory is like NewIDFillFactory but derives each id from
// namespace and the block's range, so the same gap always gets the same id.
func NewStableIDFillFactory(namespace string) func(model.Range) model.UniqueRange {
	space := uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace))
	return func(r model.Range) model.UniqueRange {
		return model.UniqueRange{Range: r, ID: uuid.NewSHA1(space, []byte(r.String())).String()}
	}
}
