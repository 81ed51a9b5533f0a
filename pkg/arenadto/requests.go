package arenadto

type StartRequest struct {
	WhiteModel  string `json:"white_model" validate:"max=200"`
	BlackModel  string `json:"black_model" validate:"max=200"`
	MoveDelayMS *int64 `json:"move_delay_ms,omitempty" validate:"omitempty,min=0,max=600000"`
}

type PaceRequest struct {
	MoveDelayMS int64 `json:"move_delay_ms" validate:"min=0,max=600000"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
	Free   bool     `json:"free"`
}

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}
