// controller/controllers.go
package controller

// Controllers aggregates all HTTP controllers for route registration
type Controllers struct {
	Query *QueryController
	Proxy *ProxyController
}
