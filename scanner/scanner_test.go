package scanner_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/scanner"
	"github.com/stretchr/testify/suite"
)

// fakeAdvertisement is a canned advertising frame.
type fakeAdvertisement struct {
	name        string
	addr        string
	rssi        int
	services    []string
	connectable bool
}

func (a fakeAdvertisement) LocalName() string  { return a.name }
func (a fakeAdvertisement) Addr() string       { return a.addr }
func (a fakeAdvertisement) RSSI() int          { return a.rssi }
func (a fakeAdvertisement) Services() []string { return a.services }
func (a fakeAdvertisement) Connectable() bool  { return a.connectable }

// fakeScanTransport replays a fixed sequence of frames into the handler and
// then waits out the scan window like a real radio would.
type fakeScanTransport struct {
	frames  []fakeAdvertisement
	scanErr error
}

func (t *fakeScanTransport) Scan(ctx context.Context, _ bool, h device.AdvHandler) error {
	if t.scanErr != nil {
		return t.scanErr
	}
	for _, frame := range t.frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		h(frame)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (t *fakeScanTransport) Dial(context.Context, string) (device.Client, error) {
	return nil, fmt.Errorf("not a connectable transport")
}

type ScannerTestSuite struct {
	suite.Suite

	transport      *fakeScanTransport
	restoreFactory func() (device.Transport, error)
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.transport = &fakeScanTransport{}
	suite.restoreFactory = device.Factory
	device.Factory = func() (device.Transport, error) { return suite.transport, nil }
}

func (suite *ScannerTestSuite) TearDownTest() {
	device.Factory = suite.restoreFactory
}

func (suite *ScannerTestSuite) scan(opts *scanner.Options) ([]scanner.AdvertisementRecord, error) {
	if opts == nil {
		opts = &scanner.Options{Duration: 50 * time.Millisecond, AllowDuplicates: true}
	}
	return scanner.New(nil).Scan(context.Background(), opts)
}

func (suite *ScannerTestSuite) TestEmptyScanIsNotAnError() {
	records, err := suite.scan(nil)

	suite.NoError(err)
	suite.Empty(records)
}

func (suite *ScannerTestSuite) TestOneRecordPerAddress() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", name: "HRM-Dual", rssi: -50, services: []string{"180D"}},
		{addr: "AA:BB:CC:DD:EE:02", name: "Mystery", rssi: -70},
		{addr: "AA:BB:CC:DD:EE:01", name: "HRM-Dual", rssi: -55, services: []string{"180D"}},
	}

	records, err := suite.scan(nil)

	suite.NoError(err)
	suite.Require().Len(records, 2)
	// Discovery order, and the later frame's RSSI wins.
	suite.Equal("AA:BB:CC:DD:EE:01", records[0].Address)
	suite.Equal(-55, records[0].RSSI)
	suite.Equal("AA:BB:CC:DD:EE:02", records[1].Address)
}

func (suite *ScannerTestSuite) TestSparseFramesDoNotEraseFields() {
	// Scan responses and plain advertisements carry different fields; a frame
	// without a name or services must not wipe what an earlier frame carried.
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", name: "HRM-Dual", rssi: -50, services: []string{"180D", "180F"}},
		{addr: "AA:BB:CC:DD:EE:01", rssi: -62},
	}

	records, err := suite.scan(nil)

	suite.NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal("HRM-Dual", records[0].LocalName)
	suite.Equal(-62, records[0].RSSI)
	suite.ElementsMatch([]string{"180d", "180f"}, records[0].ServiceUUIDs)
}

func (suite *ScannerTestSuite) TestServiceUUIDsAreNormalized() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", rssi: -50, services: []string{"0000180D-0000-1000-8000-00805F9B34FB"}},
	}

	records, err := suite.scan(nil)

	suite.NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal([]string{"180d"}, records[0].ServiceUUIDs)
}

func (suite *ScannerTestSuite) TestAllowList() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", rssi: -50},
		{addr: "AA:BB:CC:DD:EE:02", rssi: -60},
	}

	records, err := suite.scan(&scanner.Options{
		Duration:  50 * time.Millisecond,
		AllowList: []string{"AA:BB:CC:DD:EE:02"},
	})

	suite.NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal("AA:BB:CC:DD:EE:02", records[0].Address)
}

func (suite *ScannerTestSuite) TestBlockList() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", rssi: -50},
		{addr: "AA:BB:CC:DD:EE:02", rssi: -60},
	}

	records, err := suite.scan(&scanner.Options{
		Duration:  50 * time.Millisecond,
		BlockList: []string{"AA:BB:CC:DD:EE:01"},
	})

	suite.NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal("AA:BB:CC:DD:EE:02", records[0].Address)
}

func (suite *ScannerTestSuite) TestCancellationDiscardsPartialResults() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", rssi: -50},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	records, err := scanner.New(nil).Scan(ctx, &scanner.Options{Duration: 10 * time.Second})

	suite.ErrorIs(err, context.Canceled)
	suite.Nil(records)
}

func (suite *ScannerTestSuite) TestTransportFailureWrapsScanError() {
	suite.transport.scanErr = errors.New("adapter powered off")

	records, err := suite.scan(nil)

	suite.ErrorIs(err, device.ErrScanFailed)
	suite.Nil(records)
}

func (suite *ScannerTestSuite) TestEventsStream() {
	suite.transport.frames = []fakeAdvertisement{
		{addr: "AA:BB:CC:DD:EE:01", name: "HRM-Dual", rssi: -50},
		{addr: "AA:BB:CC:DD:EE:01", name: "HRM-Dual", rssi: -52},
	}

	s := scanner.New(nil)
	_, err := s.Scan(context.Background(), &scanner.Options{Duration: 50 * time.Millisecond})
	suite.NoError(err)

	var events []scanner.Event
	for len(events) < 2 {
		select {
		case ev := <-s.Events():
			events = append(events, ev)
		case <-time.After(time.Second):
			suite.FailNow("timed out waiting for scanner events")
		}
	}

	suite.Equal(scanner.EventNew, events[0].Type)
	suite.Equal(scanner.EventUpdated, events[1].Type)
	suite.Equal(-52, events[1].Record.RSSI)
}

func (suite *ScannerTestSuite) TestFastOptionsTargetOneAddress() {
	opts := scanner.FastOptions("AA:BB:CC:DD:EE:01")

	suite.Equal(scanner.FastDuration, opts.Duration)
	suite.Equal([]string{"AA:BB:CC:DD:EE:01"}, opts.AllowList)
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
