package channel

// HandleConn processes a connection whose payload has been read in
// full, as if it had been accepted by the current listener.
func (c *Channel) HandleConn(conn Conn, payload []byte) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	c.handle(gen, conn, payload)
}

// InFlight reports whether a command awaits its result.
func (c *Channel) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inflight != nil
}

// Pending returns the number of commands not yet dispatched.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}
