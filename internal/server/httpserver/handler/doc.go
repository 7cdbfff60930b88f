// Package handler implements the wsnapd HTTP API.
//
// Every JSON response uses the envelope
//
//	{"code":"OK","message":"Success","request_id":"...","timestamp":1700000000000,"data":{...}}
//
// Errors carry the DomainError code and an HTTP status derived from it.
package handler
