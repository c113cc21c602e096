package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.POST("/api/v1/qr/scan", s.scan)
	s.router.GET("/api/v1/qr/eligibility", s.eligibility)
	s.router.GET("/api/v1/loyalty/wallet", s.wallet)
	s.router.GET("/api/v1/loyalty/transactions", s.transactions)
	s.router.POST("/api/v1/loyalty/adjust", s.adjust)
	s.router.POST("/api/v1/mix/price", s.mixPrice)
}
