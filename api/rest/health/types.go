package health

type Response struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

type PingResponse struct {
	Message string `json:"message"`
}
