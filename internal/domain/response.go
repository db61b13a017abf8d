package domain

// ResponseType discriminates the two reply shapes.
type ResponseType string

const (
	ResponseMessage  ResponseType = "message"
	ResponseSchedule ResponseType = "schedule"
)

// ScheduleObject is one leg or option of a planned trip. Times are unix
// seconds in UTC.
type ScheduleObject struct {
	Type         TransportType `json:"type"`
	TimeStartUTC int64         `json:"time_start_utc"`
	TimeEndUTC   int64         `json:"time_end_utc"`
	PlaceStart   string        `json:"place_start"`
	PlaceFinish  string        `json:"place_finish"`
	TicketURL    string        `json:"ticket_url"`
}

// Response is the reply to a single user message: a text message or a
// schedule.
type Response struct {
	Type    ResponseType     `json:"type"`
	Text    string           `json:"text,omitempty"`
	Objects []ScheduleObject `json:"objects,omitempty"`
}

// NewMessageResponse wraps text as a message reply.
func NewMessageResponse(text string) Response {
	return Response{Type: ResponseMessage, Text: text}
}

// NewScheduleResponse wraps planned schedule objects as a schedule reply.
func NewScheduleResponse(objects []ScheduleObject) Response {
	return Response{Type: ResponseSchedule, Objects: objects}
}
