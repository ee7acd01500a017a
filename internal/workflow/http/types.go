package http

type createCaseReq struct {
	ClientName     string `json:"client_name" binding:"required"`
	ClientDocument string `json:"client_document" binding:"required"`
}

type actionReq struct {
	Action  string         `json:"action" binding:"required"`
	Payload map[string]any `json:"payload,omitempty"`
}
