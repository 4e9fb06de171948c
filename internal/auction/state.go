package auction

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/xtrntr/auctionhouse/internal/models"
)

const discriminatorSize = 8

// Record sizes, discriminator included
const (
	AuctionRecordSize = discriminatorSize + 8 + 32 + 32 + 32 + 8 + 1 + 1 + 32 + 8
	BidRecordSize     = discriminatorSize + 32 + 8 + 1 + 1
)

var (
	auctionDiscriminator = discriminator("Auction")
	bidDiscriminator     = discriminator("Bid")
)

func discriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

func encodeRecord(disc [discriminatorSize]byte, v interface{}, size int) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("%w: encoded %d bytes, want %d", ErrInvalidRecord, buf.Len(), size)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, disc [discriminatorSize]byte, size int, v interface{}) error {
	if len(data) != size || !bytes.Equal(data[:discriminatorSize], disc[:]) {
		return ErrInvalidRecord
	}
	if err := bin.NewBorshDecoder(data[discriminatorSize:]).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

func encodeAuction(a *models.Auction) ([]byte, error) {
	return encodeRecord(auctionDiscriminator, a, AuctionRecordSize)
}

func decodeAuction(data []byte) (*models.Auction, error) {
	var a models.Auction
	if err := decodeRecord(data, auctionDiscriminator, AuctionRecordSize, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeBid(b *models.Bid) ([]byte, error) {
	return encodeRecord(bidDiscriminator, b, BidRecordSize)
}

func decodeBid(data []byte) (*models.Bid, error) {
	var b models.Bid
	if err := decodeRecord(data, bidDiscriminator, BidRecordSize, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
