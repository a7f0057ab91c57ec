/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 24 17:15:30 2017 mstenber
 * Last modified: Fri Apr  6 11:31:02 2018 mstenber
 * Edit time:     63 min
 *
 */

package codec

import (
	"crypto/rand"
	"fmt"
	"log"
	"testing"

	"github.com/stvp/assert"
)

const compressible = "123456789123456789123456789123456789123456789123456789123456789123456789123456789123456789123456789"

func ProdCodecOnce(text string, c Codec, t *testing.T) {
	p := []byte(text)
	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	dec, err := c.DecodeBytes(enc, nil)
	assert.Nil(t, err)
	assert.Equal(t, p, dec)
}

func ProdCodec(c Codec, t *testing.T) {
	ProdCodecOnce("foo", c, t)
	ProdCodecOnce(compressible, c, t)
	ProdCodecOnce(string(make([]byte, 4096)), c, t)
}

func TestEncryptingCodec(t *testing.T) {
	p := []byte("data")
	ad := []byte("p\x00\x00\x00\x00\x00\x00\x00\x01")

	c, err := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	assert.Nil(t, err)

	ProdCodec(c, t)

	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)

	// wrong additional data fails authentication
	_, err2 := c.DecodeBytes(enc, ad)
	assert.True(t, err2 != nil)

	// nonce is random
	enc2, err := c.EncodeBytes(p, nil)
	assert.NotEqual(t, enc, enc2)

	dec, err := c.DecodeBytes(enc2, nil)
	assert.Nil(t, err)
	assert.Equal(t, p, dec)

	// page key as additional data
	enc3, err := c.EncodeBytes(p, ad)
	dec, err = c.DecodeBytes(enc3, ad)
	assert.Nil(t, err)
	assert.Equal(t, p, dec)

	_, err = c.DecodeBytes(enc3[:4], ad)
	assert.True(t, err != nil)
}

func TestCompressingCodec(t *testing.T) {
	c := &CompressingCodec{}
	ProdCodec(c, t)

	p := []byte(compressible)
	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.True(t, len(enc) < len(compressible))
	assert.Equal(t, CompressionType(enc[0]), CompressionType_SNAPPY)

	// incompressible data costs one byte
	p = []byte("abc")
	enc, err = c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.Equal(t, len(enc), 4)
	assert.Equal(t, CompressionType(enc[0]), CompressionType_PLAIN)

	_, err = c.DecodeBytes([]byte{42, 1, 2}, nil)
	assert.True(t, err != nil)
	_, err = c.DecodeBytes(nil, nil)
	assert.True(t, err != nil)
}

func TestNopCodecChain(t *testing.T) {
	c := &CodecChain{}
	ProdCodec(c, t)
}

func TestCodecChain(t *testing.T) {
	c1, err := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	assert.Nil(t, err)
	c2 := &CompressingCodec{}
	c := CodecChain{}.Init(c1, c2)
	ProdCodec(c, t)

	p := []byte(compressible)
	enc, err := c.EncodeBytes(p, nil)
	assert.Nil(t, err)
	assert.True(t, len(enc) < len(compressible))
}

// pages returns the payloads a page device typically stores: random
// (file data), a directory-like mostly zero page and an empty one.
func pages() map[string][]byte {
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		log.Panic(err)
	}
	dir := make([]byte, 4096)
	for i := 0; i < len(dir); i += 80 * 7 {
		copy(dir[i:], "\x02\x00\x00\x00\x00\x00\x00\x00\x05\x01\x00\x00\x00\x00\x00\x00hello")
	}
	return map[string][]byte{"Random": random, "Dir": dir,
		"Zeros": make([]byte, 4096)}
}

func BenchmarkCodec(b *testing.B) {
	c1, _ := EncryptingCodec{}.Init([]byte("foo"), []byte("salt"), 64)
	c2 := &CompressingCodec{}
	codecs := map[string]Codec{"AES": c1, "Snappy": c2,
		"AES+Snappy": CodecChain{}.Init(c1, c2)}
	ad := []byte("p0000000")
	for cname, c := range codecs {
		for pname, p := range pages() {
			c, p := c, p
			b.Run(fmt.Sprintf("Encode-%s-%s", cname, pname), func(b *testing.B) {
				b.SetBytes(int64(len(p)))
				for i := 0; i < b.N; i++ {
					if _, err := c.EncodeBytes(p, ad); err != nil {
						b.Fatal(err)
					}
				}
			})
			enc, err := c.EncodeBytes(p, ad)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(fmt.Sprintf("Decode-%s-%s", cname, pname), func(b *testing.B) {
				b.SetBytes(int64(len(p)))
				for i := 0; i < b.N; i++ {
					if _, err := c.DecodeBytes(enc, ad); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
