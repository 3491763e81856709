package pipeline

import "errors"

// Stage boundaries trap and classify errors against these kinds. Source,
// payload, baseline, and model errors are recoverable and never fail a run;
// persistence failures downgrade the run; invariant violations fail it.
var (
	ErrConfig        = errors.New("config error")
	ErrSourceFetch   = errors.New("source fetch error")
	ErrPayloadParse  = errors.New("payload parse error")
	ErrPersistence   = errors.New("persistence error")
	ErrFatalInternal = errors.New("internal invariant violated")
)
