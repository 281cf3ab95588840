package domain

// Action is an immutable, serializable message discriminated by its kind.
type Action interface {
	Kind() string
}

// RequestAction is an Action that expects a correlated ResponseAction.
// An empty RequestID asks the dispatcher to generate one.
type RequestAction interface {
	Action
	RequestID() string
	// WithRequestID returns a copy of the request carrying id.
	WithRequestID(id string) RequestAction
}

// ResponseAction answers the RequestAction whose RequestID equals ResponseID.
// An empty ResponseID marks an unsolicited response.
type ResponseAction interface {
	Action
	ResponseID() string
}

// Standard Action Kinds
const (
	// KindRequestModel asks the remote peer for the current model.
	// Payload: RequestModel
	KindRequestModel = "requestModel"

	// KindSetModel answers KindRequestModel with a full model.
	// Payload: SetModel
	KindSetModel = "setModel"

	// KindUpdateModel replaces the model without being solicited.
	// Payload: UpdateModel
	KindUpdateModel = "updateModel"

	// KindModelPublished reports the decorated model that was just published.
	// Payload: ModelPublished
	KindModelPublished = "modelPublished"

	// KindRefreshFeedback asks the session to re-derive the overlay of the current model.
	KindRefreshFeedback = "refreshFeedback"
)

// Message is the generic form of an Action whose kind has no typed representation.
type Message struct {
	Type    string         `json:"-" mapstructure:"-"`
	Payload map[string]any `json:"-" mapstructure:"-"`
}

func (m Message) Kind() string { return m.Type }

// Request is the generic form of a RequestAction.
type Request struct {
	Type    string         `json:"-" mapstructure:"-"`
	ID      string         `json:"requestId" mapstructure:"requestId"`
	Payload map[string]any `json:"-" mapstructure:"-"`
}

func (r Request) Kind() string      { return r.Type }
func (r Request) RequestID() string { return r.ID }

func (r Request) WithRequestID(id string) RequestAction {
	r.ID = id
	return r
}

// Response is the generic form of a ResponseAction.
type Response struct {
	Type    string         `json:"-" mapstructure:"-"`
	ID      string         `json:"responseId" mapstructure:"responseId"`
	Payload map[string]any `json:"-" mapstructure:"-"`
}

func (r Response) Kind() string       { return r.Type }
func (r Response) ResponseID() string { return r.ID }

// RequestModel asks the remote peer for the current model.
type RequestModel struct {
	ID      string         `json:"requestId" mapstructure:"requestId"`
	Options map[string]any `json:"options,omitempty" mapstructure:"options"`
}

func (RequestModel) Kind() string        { return KindRequestModel }
func (r RequestModel) RequestID() string { return r.ID }

func (r RequestModel) WithRequestID(id string) RequestAction {
	r.ID = id
	return r
}

// SetModel carries a full authoritative model, usually in reply to RequestModel.
type SetModel struct {
	ID   string   `json:"responseId" mapstructure:"responseId"`
	Root *Element `json:"newRoot" mapstructure:"newRoot"`
}

func (SetModel) Kind() string         { return KindSetModel }
func (s SetModel) ResponseID() string { return s.ID }

// UpdateModel replaces the authoritative model. Revision is optional;
// when set, stale revisions are ignored by the engine.
type UpdateModel struct {
	Root     *Element `json:"newRoot" mapstructure:"newRoot"`
	Revision int64    `json:"revision,omitempty" mapstructure:"revision"`
}

func (UpdateModel) Kind() string { return KindUpdateModel }

// ModelPublished carries the decorated model after it became visible.
type ModelPublished struct {
	Root     *Element `json:"root" mapstructure:"root"`
	Revision int64    `json:"revision,omitempty" mapstructure:"revision"`
}

func (ModelPublished) Kind() string { return KindModelPublished }

// RefreshFeedback triggers a replay of the registered feedback on the current model.
type RefreshFeedback struct{}

func (RefreshFeedback) Kind() string { return KindRefreshFeedback }
