package llm

import (
	"errors"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// The provider failure sentinels live in pkg/models so backends can wrap
// them; they are re-exported here for callers that only import this package.
var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = errors.New("llm provider returned invalid response")
	ErrNoModelAvailable    = errors.New("no installed model available for task")
)
