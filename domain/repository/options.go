package repository

// WithID filters by the "id" column.
func WithID(id string) Option {
	return WithCondition("id", id)
}

// WithIDIn filters by the "id" column using IN.
func WithIDIn(ids []string) Option {
	return WithConditionIn("id", ids)
}

// WithRepoURL filters by the "repo_url" column.
func WithRepoURL(url string) Option {
	return WithCondition("repo_url", url)
}

// WithRepoID filters by the "repo_id" column.
func WithRepoID(id string) Option {
	return WithCondition("repo_id", id)
}
