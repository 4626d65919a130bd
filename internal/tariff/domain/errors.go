package tariff

import "errors"

var (
	// ErrUnknownTariff is returned for an unsupported retailer or tariff
	// name. This is the only hard-fail path: it indicates a caller error,
	// not a data-quality problem.
	ErrUnknownTariff = errors.New("tariff: unknown retailer or tariff")
	// ErrInvalidPeriod is returned for a zero or negative billing window.
	ErrInvalidPeriod = errors.New("tariff: invalid billing period")
)
