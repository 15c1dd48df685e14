/*
Package health probes the parts of a running scbackend process and feeds
the results into the readiness endpoint.

A Monitor owns one Checker per component. Every interval it runs each
checker under a timeout, folds the Result into a Status and hands the
outcome to a ReportFunc, which serve wires to metrics.UpdateComponent:

	Monitor ──tick──► StoreChecker  (storage)   ──┐
	                  TCPChecker    (broadcast) ──┼─► Status.Update ─► ReportFunc
	                  HTTPChecker   (api)       ──┘

A component turns unhealthy only after Config.Retries consecutive
failures and recovers on the first success.
*/
package health
