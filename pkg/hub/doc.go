// Package hub implements the presence and message-routing core: the
// mapping from transport connections to logical users, the grouping of
// users into named broadcast groups scoped to a tenant, and the rules for
// validating and fanning out inbound actions to live connections.
//
// The hub owns no sockets. It consumes a Transport for delivery and keeps
// all state in a Registry of Tenant aggregates, each serialized by its own
// lock so unrelated tenants never contend.
package hub
