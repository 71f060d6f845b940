package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics, components receive one instead of
// reaching for a global logger so that their reports can be asserted on in tests.
type API interface {
	// ReportBroken reports a component that failed in a way that needs attention.
	//
	// `id` names the component and method that broke, in the form `<component>.<method>`,
	// all lowercase, with dashes separating words (ex. `client.fetch`). Use a ScopedAPI to
	// disambiguate between packages instead of spelling out the package in every id.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that is not necessarily broken but may be worth a look.
	ReportWarning(id string, params ...any)

	// ReportDebug reports verbose diagnostics that are hidden unless debug output is enabled.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the value of a counter at the current time. Counts are points
	// of data over time, they should not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every report of an inner API with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
