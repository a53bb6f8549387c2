package protocol

// NATS subjects.
const (
	SubjectLifecycle = "fluxdna.events.lifecycle"
	SubjectEvents    = "fluxdna.events.>"
	SubjectRenderAll = "fluxdna.render.*"

	// StreamEvents is the JetStream stream retaining published events.
	StreamEvents = "FLUXDNA_EVENTS"
)

// SubjectRender returns the request subject for rendering phase.
func SubjectRender(phase string) string {
	return "fluxdna.render." + phase
}
