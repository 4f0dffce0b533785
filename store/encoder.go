package store

import (
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v4"
	"gitlab.com/trawler/trawl"
)

// key predicates
var (
	browsePrefix  = []byte("browse:")
	linkPrefix    = []byte("link:")
	formPrefix    = []byte("form:")
	pathPrefix    = []byte("pid:")
	attackPrefix  = []byte("atk:")
	payloadPrefix = []byte("pay:")

	rootKey     = []byte("meta:root")
	finishedKey = []byte("meta:finished")

	pathSeqKey    = []byte("seq:paths")
	payloadSeqKey = []byte("seq:payloads")
)

// MakeKey of a predicate and id
func MakeKey(id []byte, predicate string) []byte {
	key := []byte(predicate)
	key = append(key, byte(':'))
	key = append(key, id...)
	return key
}

// seqKey is prefix + big endian sequence so keys iterate in insertion order
func seqKey(prefix []byte, seq uint64, suffix string) []byte {
	key := make([]byte, 0, len(prefix)+8+len(suffix))
	key = append(key, prefix...)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], seq)
	key = append(key, n[:]...)
	return append(key, suffix...)
}

// pathIDFromKey extracts the path id of a link:/form: key
func pathIDFromKey(prefix, key []byte) string {
	if len(key) < len(prefix)+8 {
		return ""
	}
	return string(key[len(prefix)+8:])
}

func pathKey(pathID string) []byte {
	return MakeKey([]byte(pathID), "pid")
}

func attackKey(module, pathID string) []byte {
	return MakeKey([]byte(pathID), string(attackPrefix)+module)
}

func attackModulePrefix(module string) []byte {
	return MakeKey(nil, string(attackPrefix)+module)
}

// EncodeRequest into msgpack bytes
func EncodeRequest(req *trawl.Request) ([]byte, error) {
	return msgpack.Marshal(req)
}

// DecodeRequest from msgpack bytes
func DecodeRequest(val []byte) (*trawl.Request, error) {
	req := &trawl.Request{}
	if err := msgpack.Unmarshal(val, req); err != nil {
		return nil, err
	}
	return req, nil
}

// EncodeResource into msgpack bytes
func EncodeResource(res *trawl.Resource) ([]byte, error) {
	return msgpack.Marshal(res)
}

// DecodeResource from msgpack bytes
func DecodeResource(val []byte) (*trawl.Resource, error) {
	res := &trawl.Resource{}
	if err := msgpack.Unmarshal(val, res); err != nil {
		return nil, err
	}
	return res, nil
}

// EncodePayload into msgpack bytes
func EncodePayload(p *trawl.Payload) ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodePayload from msgpack bytes
func DecodePayload(val []byte) (*trawl.Payload, error) {
	p := &trawl.Payload{}
	if err := msgpack.Unmarshal(val, p); err != nil {
		return nil, err
	}
	return p, nil
}
