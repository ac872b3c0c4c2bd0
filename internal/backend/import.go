package backend

import (
	"context"
)

// ImportReport summarizes a bulk submission of historical sessions.
type ImportReport struct {
	Processed int
	Failed    int
	Skipped   int
	// Quota is set when capacity limited the run, even if every attempted
	// submission succeeded.
	Quota *QuotaError
	// ProcessedIDs lists the external ids actually accepted, so callers can
	// mark them imported.
	ProcessedIDs []string
}

// ImportSessions submits candidate sessions in order under the account
// quota. Remaining capacity below the candidate count trims the batch to
// the first `remaining` candidates; zero capacity aborts before any
// submission. A quota check failure is treated as unlimited so a monitoring
// outage cannot block imports.
func (c *Client) ImportSessions(ctx context.Context, reqs []UpsertSessionRequest) (ImportReport, error) {
	var report ImportReport

	quota, err := c.GetQuota(ctx)
	if err != nil {
		c.logger().Warn("quota check failed, importing without a cap", "error", err)
		quota = nil
	}
	candidates := reqs
	if quota != nil && !quota.Unlimited() {
		quotaErr := &QuotaError{Current: quota.Current, Limit: quota.Limit}
		if quota.Remaining <= 0 {
			report.Skipped = len(reqs)
			report.Quota = quotaErr
			return report, quotaErr
		}
		if quota.Remaining < len(reqs) {
			candidates = reqs[:quota.Remaining]
			report.Skipped = len(reqs) - quota.Remaining
			report.Quota = quotaErr
		}
	}

	for _, req := range candidates {
		if _, err := c.UpsertSession(ctx, req); err != nil {
			c.logger().Warn("session import failed", "externalId", req.ExternalID, "error", err)
			report.Failed++
			continue
		}
		report.Processed++
		report.ProcessedIDs = append(report.ProcessedIDs, req.ExternalID)
	}
	return report, nil
}
