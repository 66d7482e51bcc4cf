package postgres

const queryInsertEvent = `
	INSERT INTO domain_events (
		id, aggregate_id, aggregate_type, event_type, event_data,
		version, correlation_id, causation_id, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const queryStreamEvents = `
	SELECT id, aggregate_id, aggregate_type, event_type, event_data,
	       version, correlation_id, causation_id, created_at
	FROM domain_events
	WHERE aggregate_id = $1 AND version > $2
	ORDER BY version ASC
`

const queryAggregateVersion = `
	SELECT COALESCE(MAX(version), 0)
	FROM domain_events
	WHERE aggregate_id = $1
`
