package uiautomator2

// SetBaseURL points the client at another server, e.g. an httptest server.
// This should only be used in tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}
