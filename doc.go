// Package edgetill is an embedded offline-first core for point-of-sale
// devices. It keeps a device fully operational without connectivity and
// reconciles with the outside world when connectivity returns.
//
// One Engine runs per device. It owns four concerns:
//
//   - an encrypted session vault holding the single cached identity,
//     with role-dependent offline grace windows
//   - a static role/permission table layered with an online authority
//     whose deny always wins
//   - a durable sqlite store for catalog data, business-scoped
//     overrides, cached settings, and the sync queue
//   - a reconciler that drains the queue to a content-addressed ledger,
//     in per-entity order, with capped exponential retries
//
// # Construction
//
//	engine, err := edgetill.New().
//		WithConfig(cfg).
//		WithStorePath("till.db").
//		WithIdentityProvider(idp).
//		WithAuthority(authority).
//		WithPublisher(ledger).
//		WithConnectivity(probe).
//		Build(ctx)
//
// All external dependencies are injected as interfaces; the engine never
// probes the network itself and never blocks a sale on a remote call.
//
// # Offline semantics
//
// Every local operation works identically offline. Sessions outlive
// their tokens inside a role's grace window; ROOT alone gets no grace
// and is refused entirely while offline. Remote calls are bounded by a
// single timeout, and a timeout is treated exactly like being offline.
package edgetill
