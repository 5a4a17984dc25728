package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Polymarket Catalog API
// @version         0.1.0
// @description     Sports event/market catalog sync, listings, and live CLOB quotes.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
