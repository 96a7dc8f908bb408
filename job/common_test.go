package job_test

import (
	"testing"

	"gorm.io/gorm"

	"github.com/kestrel-qa/testpilot/job"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/testutil"
)

func setupTestStore(t *testing.T) (*job.MySQLStore, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &job.Job{})
	return job.NewMySQLStore(db, logger.NewTestLogger()), db
}

func browserTestJob(objective string) *job.Job {
	return &job.Job{
		Type:   job.JobTypeBrowserTest,
		Config: job.JSONMap{"objective": objective},
	}
}
