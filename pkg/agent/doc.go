// Package agent contains the orchestration core: it turns an inbound user
// message into a model reply by loading the session, repairing history,
// running the model (with provider failover) through a bounded tool-call
// loop, and persisting every turn back to the session store.
package agent
