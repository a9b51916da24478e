package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fbot-vsss/client/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnicastSenderDeliversOneDatagram(t *testing.T) {
	server, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	sender := UnicastSender{LocalAddr: "127.0.0.1:0", RemoteAddr: server.LocalAddr().String()}
	require.NoError(t, sender.Send([]byte("hello")))

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, src, err := server.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.True(t, src.IP.IsLoopback())
}

func TestUnicastSenderBindsFixedLocalAddress(t *testing.T) {
	server, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	// Reserve a port, then release it so the sender can bind it.
	reserved, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	local := reserved.LocalAddr().(*net.UDPAddr)
	require.NoError(t, reserved.Close())

	sender := UnicastSender{LocalAddr: local.String(), RemoteAddr: server.LocalAddr().String()}
	require.NoError(t, sender.Send([]byte{1}))
	// A second send reuses the same local address since the first socket is closed.
	require.NoError(t, sender.Send([]byte{2}))

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8)
	for i := 0; i < 2; i++ {
		_, src, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		assert.Equal(t, local.Port, src.Port)
	}
}

func TestUnicastSenderBindFailure(t *testing.T) {
	busy, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer busy.Close()

	sender := UnicastSender{LocalAddr: busy.LocalAddr().String(), RemoteAddr: "127.0.0.1:20011"}
	assert.Error(t, sender.Send([]byte{1}))
}

func TestListenMulticastRejectsUnicastAddress(t *testing.T) {
	_, err := ListenMulticast("127.0.0.1:10002", "", 0)
	assert.Error(t, err)

	_, err = ListenMulticast("not-an-address", "", 0)
	assert.Error(t, err)
}

func TestListenMulticastUnknownInterface(t *testing.T) {
	_, err := ListenMulticast("224.0.0.1:10002", "no-such-iface0", 0)
	assert.Error(t, err)
}

func TestZeroMQPublishSubscribe(t *testing.T) {
	const endpoint = "inproc://transport-test"

	pub, err := NewZeroMQPublisher(endpoint, log.NewNopLogger())
	require.NoError(t, err)
	defer pub.Close()

	sub, err := DialZeroMQ(endpoint, "vision")
	require.NoError(t, err)
	defer sub.Close()

	// PUB drops messages until the subscription propagates, so keep publishing.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = pub.PublishMessage("referee", []byte("other"))
				_ = pub.PublishMessage("vision", []byte("payload"))
			}
		}
	}()

	got, err := sub.Receive()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestZeroMQChannelCloseUnblocksReceive(t *testing.T) {
	sub, err := DialZeroMQ("inproc://transport-close-test", "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestZeroMQPublisherClosed(t *testing.T) {
	pub, err := NewZeroMQPublisher("inproc://transport-closed-pub", log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	assert.ErrorIs(t, pub.PublishMessage("t", []byte("x")), ErrPublisherClosed)
}
