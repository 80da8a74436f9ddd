package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RioBao/CTViewerV2-sub000/segmentation/rle"
	"github.com/RioBao/CTViewerV2-sub000/viewer"
)

// ErrWorkerStopped is returned for calls made after the worker stopped,
// and delivered to every request in flight when it dies.
var ErrWorkerStopped = errors.New("segmentation worker stopped")

// Client owns a background worker goroutine and correlates responses to
// callers by request id.  It is safe for concurrent use.
type Client struct {
	requests chan Request

	mu      sync.Mutex
	pending map[uint64]chan Response
	stopped bool

	nextID   atomic.Uint64
	done     chan struct{}
	stopOnce sync.Once
}

// NewClient starts the worker goroutine.
func NewClient() *Client {
	c := &Client{
		requests: make(chan Request),
		pending:  make(map[uint64]chan Response),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Stop shuts the worker down and rejects all in-flight requests.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Client) run() {
	defer func() {
		if r := recover(); r != nil {
			viewer.Criticalf("segmentation worker died: %v\n", r)
		}
		c.Stop()
		c.failAll()
	}()
	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			c.deliver(process(req))
		}
	}
}

func process(req Request) Response {
	resp := Response{ID: req.ID, ResultType: req.Kind.String()}
	fail := func(err error) Response {
		resp.OK = false
		resp.Err = err.Error()
		return resp
	}
	switch req.Kind {
	case KindThresholdSlice:
		indices, err := ThresholdSlice(req.Width, req.Height, req.Min, req.Max, req.Values)
		if err != nil {
			return fail(err)
		}
		resp.Indices = indices
	case KindRegionGrowSlice:
		indices, err := RegionGrowSlice(req.Width, req.Height, req.SeedIndex, req.Tolerance, req.Values)
		if err != nil {
			return fail(err)
		}
		resp.Indices = indices
	case KindEncodeBinaryMaskRLE:
		resp.Mask = rle.EncodeBinaryMaskBits(req.Bits)
	case KindDecodeBinaryMaskRLE:
		bits, err := req.Mask.Decode()
		if err != nil {
			return fail(err)
		}
		resp.Bits = bits
	default:
		return fail(fmt.Errorf("unknown request kind %d", req.Kind))
	}
	resp.OK = true
	return resp
}

func (c *Client) deliver(resp Response) {
	c.mu.Lock()
	ch, found := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()
	if found {
		ch <- resp
	}
}

func (c *Client) failAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan Response)
	c.stopped = true
	c.mu.Unlock()
	for id, ch := range pending {
		ch <- Response{ID: id, OK: false, Err: ErrWorkerStopped.Error()}
	}
}

// call sends a request and waits for its response, honoring ctx.
func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return Response{}, ErrWorkerStopped
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	select {
	case c.requests <- req:
	case <-c.done:
		c.drop(req.ID)
		return Response{}, ErrWorkerStopped
	case <-ctx.Done():
		c.drop(req.ID)
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return resp, errors.New(resp.Err)
		}
		return resp, nil
	case <-ctx.Done():
		c.drop(req.ID)
		return Response{}, ctx.Err()
	}
}

func (c *Client) drop(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// ThresholdSlice selects pixels of a width x height slice whose value
// lies in [min, max], on the worker goroutine.
func (c *Client) ThresholdSlice(ctx context.Context, width, height int32, min, max float32, values []float32) ([]int32, error) {
	resp, err := c.call(ctx, Request{
		Kind: KindThresholdSlice, Width: width, Height: height,
		Min: min, Max: max, Values: values,
	})
	if err != nil {
		return nil, err
	}
	return resp.Indices, nil
}

// RegionGrowSlice flood-fills from seedIndex on the worker goroutine.
func (c *Client) RegionGrowSlice(ctx context.Context, width, height, seedIndex int32, tolerance float32, values []float32) ([]int32, error) {
	resp, err := c.call(ctx, Request{
		Kind: KindRegionGrowSlice, Width: width, Height: height,
		SeedIndex: seedIndex, Tolerance: tolerance, Values: values,
	})
	if err != nil {
		return nil, err
	}
	return resp.Indices, nil
}

// EncodeBinaryMaskRLE run-length encodes a bit array on the worker goroutine.
func (c *Client) EncodeBinaryMaskRLE(ctx context.Context, bits []uint8) (rle.BinaryMask, error) {
	resp, err := c.call(ctx, Request{Kind: KindEncodeBinaryMaskRLE, Bits: bits})
	if err != nil {
		return rle.BinaryMask{}, err
	}
	return resp.Mask, nil
}

// DecodeBinaryMaskRLE expands a run-length encoded mask on the worker goroutine.
func (c *Client) DecodeBinaryMaskRLE(ctx context.Context, m rle.BinaryMask) ([]uint8, error) {
	resp, err := c.call(ctx, Request{Kind: KindDecodeBinaryMaskRLE, Mask: m})
	if err != nil {
		return nil, err
	}
	return resp.Bits, nil
}
