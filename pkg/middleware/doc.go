// Package middleware provides observability wrappers for the RPC
// client's HTTP pipeline.
//
// Both wrappers are http.RoundTrippers, composed innermost-first and
// handed to the client:
//
//	rt := middleware.Metrics(middleware.OTel(nil))
//	client, _ := rpc.New(url, store, rpc.WithTransport(rt))
package middleware
