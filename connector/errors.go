package connector

import "github.com/ceyewan/orderlock/xerrors"

// Sentinel Errors - 连接器专用的哨兵错误
var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrClientNil    = xerrors.New("connector: client is nil")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)
