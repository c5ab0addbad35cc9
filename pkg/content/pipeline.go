// Package content encrypts stream data for an active session.
//
// Content is AES-CTR encrypted under Ks ⊕ lc128. The 128-bit counter block is
//
//	(Riv ⊕ (0^32 ‖ streamCtr)) ‖ inputCtr
//
// with inputCtr advancing by one per 16-byte block. Data moves through the
// memory transport in ChunkSize pieces: read, encrypt, write.
package content

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/hdcp/pkg/accel"
	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/memory"
	"github.com/backkem/hdcp/pkg/protocol"
)

// ChunkSize is the working-buffer size.
const ChunkSize = 4096

// Request describes one encryption call.
type Request struct {
	// Ks is the session key.
	Ks [protocol.KsSize]byte

	// Riv is the session IV.
	Riv [protocol.RivSize]byte

	// StreamCtr is the stream's counter value.
	StreamCtr uint32

	// InputCtr is the counter of the first block.
	InputCtr uint64

	// Src and Dst are transport offsets. They may be equal.
	Src, Dst uint64

	// Blocks is the number of 16-byte blocks to encrypt.
	Blocks int
}

// Result reports how far an encryption call got.
type Result struct {
	// Blocks is the number of blocks encrypted and written.
	Blocks int

	// InputCtr is the counter of the next block.
	InputCtr uint64
}

// Config configures a Pipeline.
type Config struct {
	// Transport moves source and destination data. Required.
	Transport memory.Transport

	// Accelerator supplies lc128. Required.
	Accelerator accel.Accelerator

	// LoggerFactory for creating loggers. Optional.
	LoggerFactory logging.LoggerFactory
}

// Pipeline is the content encryption pipeline.
type Pipeline struct {
	t   memory.Transport
	acc accel.Accelerator
	log logging.LeveledLogger
}

// NewPipeline creates a pipeline.
func NewPipeline(config Config) (*Pipeline, error) {
	if config.Transport == nil || config.Accelerator == nil {
		return nil, fmt.Errorf("%w: transport and accelerator are required", ErrInvalidRequest)
	}
	p := &Pipeline{t: config.Transport, acc: config.Accelerator}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("content")
	}
	return p, nil
}

// CounterBlock builds the initial AES-CTR block.
func CounterBlock(riv [protocol.RivSize]byte, streamCtr uint32, inputCtr uint64) [crypto.AESBlockSize]byte {
	var b [crypto.AESBlockSize]byte
	binary.BigEndian.PutUint64(b[:8], binary.BigEndian.Uint64(riv[:])^uint64(streamCtr))
	binary.BigEndian.PutUint64(b[8:], inputCtr)
	return b
}

// Encrypt runs the request. On a transport failure the returned Result
// reports the blocks already written; they are not rolled back.
func (p *Pipeline) Encrypt(ctx context.Context, req Request) (Result, error) {
	res := Result{InputCtr: req.InputCtr}
	if req.Blocks <= 0 {
		return res, fmt.Errorf("%w: block count %d", ErrInvalidRequest, req.Blocks)
	}
	n := uint64(req.Blocks) * crypto.AESBlockSize
	if err := memory.CheckAligned(req.Src, 0); err != nil {
		return res, err
	}
	if err := memory.CheckAligned(req.Dst, 0); err != nil {
		return res, err
	}
	if req.InputCtr+uint64(req.Blocks) < req.InputCtr {
		return res, fmt.Errorf("%w: %d blocks from %#x", ErrCounterExhausted, req.Blocks, req.InputCtr)
	}

	sec := p.acc.Enter()
	defer sec.Exit()

	lc128, err := p.acc.SecretKey(accel.KeyLC128)
	if err != nil {
		return res, err
	}
	defer crypto.Zeroize(lc128)
	if len(lc128) != protocol.KsSize {
		return res, fmt.Errorf("%w: lc128 is %d bytes", accel.ErrInvalidKey, len(lc128))
	}
	var key [protocol.KsSize]byte
	crypto.XOR(key[:], req.Ks[:], lc128)
	defer crypto.Zeroize(key[:])

	stream := crypto.NewAESCTR(key[:], CounterBlock(req.Riv, req.StreamCtr, req.InputCtr))
	buf := make([]byte, ChunkSize)
	defer crypto.Zeroize(buf)

	for done := uint64(0); done < n; {
		size := min(uint64(ChunkSize), n-done)
		chunk := buf[:size]
		if err := p.t.Read(ctx, req.Src+done, chunk); err != nil {
			return res, err
		}
		stream.XORBlocks(chunk, chunk)
		if err := p.t.Write(ctx, req.Dst+done, chunk); err != nil {
			return res, err
		}
		done += size
		res.Blocks += int(size / crypto.AESBlockSize)
		res.InputCtr = req.InputCtr + uint64(res.Blocks)
	}

	if p.log != nil {
		p.log.Debugf("encrypted %d blocks for stream counter %d", res.Blocks, req.StreamCtr)
	}
	return res, nil
}
