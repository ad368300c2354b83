// Package device provides the Bluetooth transport for the balance board.
//
// It covers:
//   - Scanning abstractions (ScanningDevice, Advertisement) implemented by the go-ble adapter
//   - The Channel abstraction over one L2CAP channel, implemented by package l2cap
//   - Connection, which owns the control and data channels and classifies
//     every receive as data, timeout, peer close or hard error
//
// A Connection never reconnects. Once the peer closes or the transport fails,
// both channels are released and the connection stays down.
package device
