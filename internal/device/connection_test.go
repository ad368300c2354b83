package device_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const boardAddr = device.Address("00:1E:35:AA:BB:CC")

type ConnectionTestSuite struct {
	suite.Suite

	helper *testutils.TestHelper
	board  *testutils.FakeBoard
}

func (suite *ConnectionTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.board = testutils.NewFakeBoard()
}

func (suite *ConnectionTestSuite) SetupSubTest() {
	suite.board = testutils.NewFakeBoard()
}

func (suite *ConnectionTestSuite) TearDownTest() {
	suite.helper.DumpLogsOnFailure()
}

func (suite *ConnectionTestSuite) connect() *device.Connection {
	opts := device.DefaultConnectOptions()
	opts.Dialer = suite.board.Dialer()
	conn, err := device.Connect(context.Background(), boardAddr, opts, suite.helper.Logger)
	suite.Require().NoError(err, "MUST connect to the fake board")
	return conn
}

func (suite *ConnectionTestSuite) TestConnect() {
	suite.Run("opens control then data channel", func() {
		conn := suite.connect()

		suite.True(conn.IsConnected())
		suite.Equal(boardAddr, conn.Address())
		suite.Equal([]uint16{0x11, 0x13}, suite.board.Dialed(), "control channel MUST be dialed before data channel")
	})

	suite.Run("control channel failure", func() {
		suite.board = testutils.NewFakeBoard().FailDial(device.ControlPSM, errors.New("host is down"))
		opts := device.DefaultConnectOptions()
		opts.Dialer = suite.board.Dialer()

		conn, err := device.Connect(context.Background(), boardAddr, opts, suite.helper.Logger)

		suite.Nil(conn)
		suite.ErrorIs(err, device.ErrConnectFailed, "MUST report ConnectFailed")
		suite.Contains(err.Error(), "host is down")
		suite.Equal([]uint16{0x11}, suite.board.Dialed(), "data channel MUST NOT be dialed after control failure")
	})

	suite.Run("data channel failure closes control channel", func() {
		suite.board = testutils.NewFakeBoard().FailDial(device.DataPSM, errors.New("connection refused"))
		opts := device.DefaultConnectOptions()
		opts.Dialer = suite.board.Dialer()

		_, err := device.Connect(context.Background(), boardAddr, opts, suite.helper.Logger)

		suite.ErrorIs(err, device.ErrConnectFailed)
		suite.True(suite.board.Control.IsClosed(), "opened control channel MUST be released")
	})

	suite.Run("invalid address", func() {
		opts := device.DefaultConnectOptions()
		opts.Dialer = suite.board.Dialer()

		_, err := device.Connect(context.Background(), "not-an-address", opts, suite.helper.Logger)
		suite.ErrorIs(err, device.ErrConnectFailed)
	})

	suite.Run("missing dialer", func() {
		_, err := device.Connect(context.Background(), boardAddr, nil, suite.helper.Logger)
		suite.ErrorIs(err, device.ErrConnectFailed)
	})
}

func (suite *ConnectionTestSuite) TestRecv() {
	suite.Run("data", func() {
		suite.board.Data.Push(testutils.Frame(0xA1, 0x20, 0x00))
		conn := suite.connect()

		data, outcome, err := conn.Recv(25)

		suite.NoError(err)
		suite.Equal(device.RecvData, outcome)
		suite.Equal([]byte{0xA1, 0x20, 0x00}, data)
	})

	suite.Run("timeout is not an error", func() {
		suite.board = testutils.NewFakeBoard(testutils.Timeout())
		conn := suite.connect()

		data, outcome, err := conn.Recv(25)

		suite.NoError(err)
		suite.Nil(data)
		suite.Equal(device.RecvTimedOut, outcome)
		suite.True(conn.IsConnected(), "timeout MUST keep the connection")
	})

	suite.Run("peer close tears down", func() {
		suite.board = testutils.NewFakeBoard(testutils.PeerClosed())
		conn := suite.connect()

		_, outcome, err := conn.Recv(25)

		suite.NoError(err)
		suite.Equal(device.RecvPeerClosed, outcome)
		suite.False(conn.IsConnected())
		suite.True(suite.board.Control.IsClosed(), "control channel MUST be closed")
		suite.True(suite.board.Data.IsClosed(), "data channel MUST be closed")
	})

	suite.Run("empty read counts as peer close", func() {
		suite.board = testutils.NewFakeBoard(testutils.Frame())
		conn := suite.connect()

		_, outcome, _ := conn.Recv(25)
		suite.Equal(device.RecvPeerClosed, outcome)
	})

	suite.Run("hard error tears down", func() {
		suite.board = testutils.NewFakeBoard(testutils.Fail("connection reset"))
		conn := suite.connect()

		_, outcome, err := conn.Recv(25)

		suite.Equal(device.RecvHardError, outcome)
		suite.ErrorIs(err, device.ErrNotConnected)
		suite.False(conn.IsConnected())
		suite.True(suite.board.Data.IsClosed())
	})

	suite.Run("read after close", func() {
		conn := suite.connect()
		suite.NoError(conn.Close())

		_, outcome, err := conn.Recv(25)
		suite.Equal(device.RecvHardError, outcome)
		suite.ErrorIs(err, device.ErrNotConnected)
	})

	suite.Run("network timeout error counts as timeout", func() {
		suite.board = testutils.NewFakeBoard(testutils.ReadStep{Err: &net.OpError{Op: "read", Err: timeoutErr{}}})
		conn := suite.connect()

		_, outcome, err := conn.Recv(25)
		suite.NoError(err)
		suite.Equal(device.RecvTimedOut, outcome)
	})
}

func (suite *ConnectionTestSuite) TestSend() {
	suite.Run("writes command to control channel", func() {
		conn := suite.connect()

		suite.NoError(conn.Send([]byte{0x52, 0x15, 0x00}))
		suite.Equal([][]byte{{0x52, 0x15, 0x00}}, suite.board.Control.Writes())
		suite.Empty(suite.board.Data.Writes(), "commands MUST NOT go to the data channel")
	})

	suite.Run("write failure tears down", func() {
		suite.board = testutils.NewFakeBoard()
		suite.board.Control.FailWrites(errors.New("broken pipe"))
		conn := suite.connect()

		err := conn.Send([]byte{0x52, 0x15, 0x00})

		suite.ErrorIs(err, device.ErrNotConnected)
		suite.False(conn.IsConnected())
		suite.True(suite.board.Data.IsClosed())
	})

	suite.Run("send after close", func() {
		conn := suite.connect()
		suite.NoError(conn.Close())

		suite.ErrorIs(conn.Send([]byte{0x52, 0x15, 0x00}), device.ErrNotConnected)
	})
}

func (suite *ConnectionTestSuite) TestCloseIsIdempotent() {
	conn := suite.connect()

	suite.NoError(conn.Close())
	suite.NoError(conn.Close())

	suite.False(conn.IsConnected())
	suite.Equal(1, suite.board.Control.Closes(), "control channel MUST be closed exactly once")
	suite.Equal(1, suite.board.Data.Closes(), "data channel MUST be closed exactly once")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestConnectionTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectionTestSuite))
}
