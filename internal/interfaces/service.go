package interfaces

// Service is the contract of every interface exposing the notary services,
// started once the core services are running and stopped before them.
type Service interface {
	Start() error
	Stop()
}
