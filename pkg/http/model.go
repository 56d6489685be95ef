package http

// APIResponse is the envelope every JSON endpoint returns. Errors holds
// either AppErrors or ValidationErrors and is set only on failure.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"country"`
	Message string                 `json:"message,omitempty" example:"country is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData carries catalog-style lists.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}
