package importer

import (
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
)

const progressLifespan = 30 * time.Minute

func progressKey(runId string) string {
	return "ImportProgress:" + runId
}

// storeProgress caches the latest chunk progress so pollers can follow a
// run without hitting the database. Best effort; a failed write never
// interrupts the apply phase.
func storeProgress(runId string, p reconcile.Progress) {
	_ = config.SetRedisObject(progressKey(runId), &p, progressLifespan)
}

// GetProgress returns the last reported progress for a run, if any.
func GetProgress(runId string) (*reconcile.Progress, error) {
	var p reconcile.Progress
	exists, err := config.GetRedisObject(progressKey(runId), &p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &p, nil
}
