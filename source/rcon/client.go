// SPDX-License-Identifier: GPL-3.0-or-later

package rcon

import (
	"time"

	gorcon "github.com/gorcon/rcon"
)

type rconConn interface {
	connect() error
	disconnect() error
	queryTps() (string, error)
	queryList() (string, error)
}

const (
	cmdTPS  = "tps"
	cmdList = "list"
)

func newRconConn(cfg Config) rconConn {
	return &rconClient{
		addr:     cfg.Address,
		password: cfg.Password,
		timeout:  cfg.Timeout.Duration(),
	}
}

type rconClient struct {
	conn     *gorcon.Conn
	addr     string
	password string
	timeout  time.Duration
}

func (c *rconClient) queryTps() (string, error) {
	return c.conn.Execute(cmdTPS)
}

func (c *rconClient) queryList() (string, error) {
	return c.conn.Execute(cmdList)
}

func (c *rconClient) connect() error {
	_ = c.disconnect()

	conn, err := gorcon.Dial(c.addr, c.password, gorcon.SetDialTimeout(c.timeout), gorcon.SetDeadline(c.timeout))
	if err != nil {
		return err
	}
	c.conn = conn

	return nil
}

func (c *rconClient) disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
