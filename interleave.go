package geoarena

import (
	"github.com/pkg/errors"
)

// InterleaveSource is one logical array to be packed by CreateInterleaved.
//
type InterleaveSource struct {
	Data        []byte
	Count       int
	ElementSize int
	Format      Format
}

// Interleaved describes a typed slice as an InterleaveSource.
//
func Interleaved[T any](data []T, format Format) InterleaveSource {
	return InterleaveSource{
		Data:        asBytes(data),
		Count:       len(data),
		ElementSize: sizeOf[T](),
		Format:      format,
	}
}

// CreateInterleaved packs the non-empty sources into a single block with one record per element index, so that
// record i holds element i of every non-empty source in argument order. It returns one Range per source. Empty
// sources occupy no bytes and yield a zero-count Range with no reservation.
//
func CreateInterleaved(pool *Pool, sources ...InterleaveSource) ([]*Range, error) {
	records := 0
	stride := 0
	for i, src := range sources {
		if src.ElementSize <= 0 || src.Count < 0 {
			return nil, errors.Wrapf(ErrInvalidArgument, "source #%d: [%d] elements of [%d] bytes", i, src.Count, src.ElementSize)
		}
		if src.Count == 0 {
			continue
		}
		if records != 0 && src.Count != records {
			return nil, errors.Wrapf(ErrSizeMismatch, "source #%d has [%d] records, expected [%d]", i, src.Count, records)
		}
		if len(src.Data) < src.Count*src.ElementSize {
			return nil, errors.Wrapf(ErrSizeMismatch, "source #%d supplies [%d] bytes for [%d] elements of [%d]", i, len(src.Data), src.Count, src.ElementSize)
		}
		records = src.Count
		stride += src.ElementSize
	}

	cursor, peak := pool.cursor, pool.peak
	base, err := pool.reserve(stride*records, 0)
	if err != nil {
		return nil, err
	}

	staging := getStaging(stride * records)
	defer staging.unref()
	block := staging.data
	ranges := make([]*Range, len(sources))
	fieldOffset := 0
	for i, src := range sources {
		if src.Count == 0 {
			ranges[i] = newRange(pool, base, 0, src.ElementSize, 0, src.Format)
			continue
		}
		es := src.ElementSize
		for rec := 0; rec < records; rec++ {
			copy(block[rec*stride+fieldOffset:rec*stride+fieldOffset+es], src.Data[rec*es:(rec+1)*es])
		}
		ranges[i] = newRange(pool, base+fieldOffset, records, es, stride, src.Format)
		fieldOffset += es
	}

	if len(block) > 0 {
		dst, err := pool.storage.beginWrite(base, len(block))
		if err != nil {
			pool.rollback(cursor, peak)
			return nil, err
		}
		copy(dst, block)
		if err := pool.storage.endWrite(); err != nil {
			pool.rollback(cursor, peak)
			return nil, err
		}
		pool.ii.Written(len(block))
	}
	return ranges, nil
}
