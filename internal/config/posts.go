package config

// EnvPostsRequireAuth requires a bearer token on post write routes when true.
const EnvPostsRequireAuth = "POSTS_REQUIRE_AUTH"

// PostsConfig contains settings of the posts resource.
type PostsConfig struct {
	RequireAuth bool `toml:"require_auth"`
}

// Finalize loads environment overrides for the posts configuration.
func (c *PostsConfig) Finalize() error {
	envBool(EnvPostsRequireAuth, &c.RequireAuth)
	return nil
}
