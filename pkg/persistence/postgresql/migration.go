package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'archived')),
				entry_step_id VARCHAR(255) NOT NULL DEFAULT '',
				steps JSONB NOT NULL DEFAULT '[]',
				health_score INTEGER NOT NULL DEFAULT 0,
				health_status VARCHAR(50) NOT NULL DEFAULT '',
				last_health_check_date TIMESTAMP WITH TIME ZONE,
				last_repair_date TIMESTAMP WITH TIME ZONE,
				total_repairs_made INTEGER NOT NULL DEFAULT 0,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_health_score ON workflows(health_score);
		`,
		2: `
			CREATE TABLE health_reports (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_version BIGINT NOT NULL,
				health_score INTEGER NOT NULL,
				status VARCHAR(50) NOT NULL,
				critical_count INTEGER NOT NULL,
				warning_count INTEGER NOT NULL,
				suggestion_count INTEGER NOT NULL,
				auto_fixable_count INTEGER NOT NULL,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_health_reports_workflow ON health_reports(workflow_id, recorded_at DESC);

			CREATE TABLE repair_logs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				fixed_count INTEGER NOT NULL,
				skipped_count INTEGER NOT NULL,
				failed_count INTEGER NOT NULL,
				log JSONB NOT NULL DEFAULT '[]',
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_repair_logs_workflow ON repair_logs(workflow_id);

			CREATE TABLE sweep_digests (
				id VARCHAR(255) PRIMARY KEY,
				ran_at TIMESTAMP WITH TIME ZONE NOT NULL,
				payload JSONB NOT NULL
			);

			CREATE INDEX idx_sweep_digests_ran_at ON sweep_digests(ran_at);
		`,
	}
}
