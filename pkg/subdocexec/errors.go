package subdocexec

import (
	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/logging"
	"github.com/cachemir/cachemir/pkg/subdoc"
)

// subdocStatusTable maps pkg/subdoc's path-engine status to the protocol
// status, grounded on the 1:1 mapping documented in spec.md §7 and
// exercised in the original's subdoc_util.cc status-translation switch.
var subdocStatusTable = map[subdoc.Status]binproto.Status{
	subdoc.StatusSuccess:          binproto.StatusSuccess,
	subdoc.StatusPathEnoent:       binproto.StatusSubdocPathEnoent,
	subdoc.StatusPathMismatch:     binproto.StatusSubdocPathMismatch,
	subdoc.StatusDocETooDeep:      binproto.StatusSubdocDocE2Deep,
	subdoc.StatusPathEinval:       binproto.StatusSubdocPathEinval,
	subdoc.StatusDocEExists:       binproto.StatusSubdocPathEexists,
	subdoc.StatusPathE2Big:        binproto.StatusSubdocPathE2Big,
	subdoc.StatusNumE2Big:         binproto.StatusSubdocNumErange,
	subdoc.StatusDeltaE2Big:       binproto.StatusSubdocDeltaErange,
	subdoc.StatusValueCantInsert:  binproto.StatusSubdocValueCantInsert,
	subdoc.StatusValueETooDeep:    binproto.StatusSubdocValueEtoodeep,
}

// MapSubdocStatus translates a pkg/subdoc result status to the protocol
// status sent to the client. key is only used to redact-log the fallback
// EINTERNAL case per spec.md §7 ("warn-log with redacted key").
func MapSubdocStatus(s subdoc.Status, key string) binproto.Status {
	if status, ok := subdocStatusTable[s]; ok {
		return status
	}
	logging.Errorf("subdocexec: unmapped subdoc status %d for key=%s", s, logging.RedactKey(key))
	return binproto.StatusEInternal
}

// docbufStatusTable maps the document materializer's outcome to the
// protocol status, per spec.md §4.4 / §7.
var docbufStatusTable = map[docbuf.Status]binproto.Status{
	docbuf.StatusOK:         binproto.StatusSuccess,
	docbuf.StatusNotJSON:    binproto.StatusSubdocDocNotJSON,
	docbuf.StatusInternal:   binproto.StatusEInternal,
	docbuf.StatusTooBig:     binproto.StatusE2BIG,
	docbuf.StatusCASMismatch: binproto.StatusKeyExists,
}

// MapDocbufStatus translates a pkg/docbuf materialization outcome to the
// protocol status. key is only used to redact-log the fallback EINTERNAL
// case per spec.md §7 ("warn-log with redacted key").
func MapDocbufStatus(s docbuf.Status, key string) binproto.Status {
	if status, ok := docbufStatusTable[s]; ok {
		return status
	}
	logging.Errorf("subdocexec: unmapped docbuf status %d for key=%s", s, logging.RedactKey(key))
	return binproto.StatusEInternal
}
