// Package metastream extracts tags and stream properties from audio files
// without reading more of them than it has to.
//
// # Quick Start
//
//	md, err := metastream.Open(ctx, "song.flac")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%s - %s (%s)\n", md.Artist, md.Title, md.Duration())
//
// # Supported Formats
//
//   - MP3 and AAC: ID3v2.3/2.4 at the start, ID3v1 at the end, duration
//     from TLEN, a Xing/VBRI header or the first frame's bitrate
//   - WAV: LIST/INFO chunks, a trailing id3 chunk, duration from fmt and data
//   - FLAC: STREAMINFO, Vorbis comments and PICTURE blocks
//   - Ogg Vorbis and Ogg Opus: comment header reassembled across pages,
//     duration from the last granule position
//
// # What Is Extracted
//
// Title, artist, album, track, year, length and optionally the front cover
// picture. Each field is taken from the first place it is found: an ID3v2
// frame beats the ID3v1 trailer, the first TITLE comment beats later ones.
// Multiple ARTIST comments are joined with ", ".
//
// Values are read through a fixed lookahead buffer. Frames, blocks and
// comments that are not wanted are skipped by advancing the file position,
// never by reading them.
//
// # Options
//
//	md, err := metastream.Open(ctx, path,
//	    metastream.WithAlbumArt(true),
//	    metastream.WithDurationScan(false),
//	    metastream.WithLogger(slog.Default()),
//	)
//
// # Error Handling
//
// Structural failures return a nil *Metadata with a *CorruptedFileError,
// *UnsupportedFormatError or ErrNoMetadata. Recoverable problems inside a
// tag leave the field unset and are recorded in Metadata.Warnings:
//
//	for _, w := range md.Warnings {
//		log.Printf("warning: %s", w)
//	}
//
// # Concurrency
//
// Extractions share no state. ExtractMany runs files in parallel with
// per-job buffers:
//
//	for _, res := range metastream.ExtractMany(ctx, paths) {
//		...
//	}
package metastream
