// Package domain holds the types shared by the catalog, parameter store,
// session controller and host engines, plus the ports those layers talk
// through.
package domain

// Voice is a named synthesis profile offered by a host engine. Name is
// unique within a catalog for the lifetime of a session; Handle is the
// identifier the engine itself understands (an Azure ShortName, a Piper
// model name) and is opaque to everything else.
type Voice struct {
	Name   string
	Locale string
	Gender string
	Handle string
}

// Label returns the name decorated with its locale, for display.
func (v Voice) Label() string {
	if v.Locale == "" {
		return v.Name
	}
	return v.Name + " (" + v.Locale + ")"
}
