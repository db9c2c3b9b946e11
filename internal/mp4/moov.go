package mp4

// Structural box assembly. All duration-bearing boxes use version 1
// (64-bit durations) so the finalize-time moov rewrite never changes the
// box size.

func (w *Writer) buildFtyp() []byte {
	return mkbox("ftyp",
		[]byte("isom"), u32(0x200),
		[]byte("isom"), []byte("iso2"), []byte("iso6"), []byte("mp41"),
	)
}

func (w *Writer) buildMoov(videoDur, audioDur uint64) []byte {
	parts := [][]byte{
		w.buildMvhd(videoDur),
		w.buildVideoTrak(videoDur),
	}
	if w.audio != nil {
		parts = append(parts, w.buildAudioTrak(audioDur))
	}
	parts = append(parts, w.buildMvex())
	return mkbox("moov", parts...)
}

func (w *Writer) buildMvhd(videoDur uint64) []byte {
	nextTrack := uint32(audioTrackID)
	if w.audio != nil {
		nextTrack = audioTrackID + 1
	}
	return fullbox("mvhd", 1, 0,
		u64(0), u64(0), // creation, modification
		u32(movieTimescale),
		u64(videoDur),
		u32(0x00010000), // rate 1.0
		u16(0x0100),     // volume 1.0
		u16(0), u32(0), u32(0),
		matrixIdentity,
		u32(0), u32(0), u32(0), u32(0), u32(0), u32(0), // pre_defined
		u32(nextTrack),
	)
}

func (w *Writer) buildVideoTrak(dur uint64) []byte {
	tkhd := fullbox("tkhd", 1, 0x3, // enabled, in movie
		u64(0), u64(0),
		u32(videoTrackID),
		u32(0),
		u64(dur),
		u32(0), u32(0),
		u16(0), u16(0), // layer, alternate group
		u16(0), u16(0), // volume, reserved
		matrixIdentity,
		fixed32(uint32(w.video.Width)),
		fixed32(uint32(w.video.Height)),
	)

	mdhd := fullbox("mdhd", 1, 0,
		u64(0), u64(0),
		u32(movieTimescale),
		u64(dur),
		u16(0x55C4), // language "und"
		u16(0),
	)

	hdlr := fullbox("hdlr", 0, 0,
		u32(0), []byte("vide"),
		u32(0), u32(0), u32(0),
		[]byte("VideoHandler\x00"),
	)

	vmhd := fullbox("vmhd", 0, 1,
		u16(0), u16(0), u16(0), u16(0),
	)

	stblParts := append([][]byte{
		fullbox("stsd", 0, 0, u32(1), w.videoSampleEntry()),
	}, emptySampleTables()...)
	stbl := mkbox("stbl", stblParts...)

	minf := mkbox("minf", vmhd, buildDinf(), stbl)
	mdia := mkbox("mdia", mdhd, hdlr, minf)
	return mkbox("trak", tkhd, mdia)
}

func (w *Writer) buildAudioTrak(dur uint64) []byte {
	// Track durations in tkhd are expressed in the movie timescale.
	movieDur := dur * movieTimescale / uint64(w.at.timescale)

	tkhd := fullbox("tkhd", 1, 0x3,
		u64(0), u64(0),
		u32(audioTrackID),
		u32(0),
		u64(movieDur),
		u32(0), u32(0),
		u16(0), u16(0),
		u16(0x0100), u16(0), // volume 1.0
		matrixIdentity,
		fixed32(0), fixed32(0),
	)

	mdhd := fullbox("mdhd", 1, 0,
		u64(0), u64(0),
		u32(w.at.timescale),
		u64(dur),
		u16(0x55C4),
		u16(0),
	)

	hdlr := fullbox("hdlr", 0, 0,
		u32(0), []byte("soun"),
		u32(0), u32(0), u32(0),
		[]byte("SoundHandler\x00"),
	)

	smhd := fullbox("smhd", 0, 0, u16(0), u16(0))

	stblParts := append([][]byte{
		fullbox("stsd", 0, 0, u32(1), w.audioSampleEntry()),
	}, emptySampleTables()...)
	stbl := mkbox("stbl", stblParts...)

	minf := mkbox("minf", smhd, buildDinf(), stbl)
	mdia := mkbox("mdia", mdhd, hdlr, minf)
	return mkbox("trak", tkhd, mdia)
}

func buildDinf() []byte {
	url := fullbox("url ", 0, 1) // self-contained
	dref := fullbox("dref", 0, 0, u32(1), url)
	return mkbox("dinf", dref)
}

// emptySampleTables returns the stts/stsc/stsz/stco set of a fragmented
// file, where all samples live in moofs.
func emptySampleTables() [][]byte {
	return [][]byte{
		fullbox("stts", 0, 0, u32(0)),
		fullbox("stsc", 0, 0, u32(0)),
		fullbox("stsz", 0, 0, u32(0), u32(0)),
		fullbox("stco", 0, 0, u32(0)),
	}
}

func (w *Writer) buildMvex() []byte {
	trex := func(trackID uint32) []byte {
		return fullbox("trex", 0, 0,
			u32(trackID),
			u32(1), // default sample description index
			u32(0), u32(0), u32(0),
		)
	}
	parts := [][]byte{trex(videoTrackID)}
	if w.audio != nil {
		parts = append(parts, trex(audioTrackID))
	}
	return mkbox("mvex", parts...)
}

// videoSampleEntry builds an mp4v entry with an esds describing
// motion-JPEG (object type 0x6C).
func (w *Writer) videoSampleEntry() []byte {
	esds := w.buildEsds()

	var compressor [32]byte
	return mkbox("mp4v",
		make([]byte, 6), u16(1), // reserved, data reference index
		u16(0), u16(0), // pre_defined, reserved
		u32(0), u32(0), u32(0),
		u16(uint16(w.video.Width)),
		u16(uint16(w.video.Height)),
		u32(0x00480000), u32(0x00480000), // 72 dpi
		u32(0),
		u16(1), // frame count per sample
		compressor[:],
		u16(0x0018), // depth
		i16(-1),
		esds,
	)
}

func (w *Writer) buildEsds() []byte {
	decoderConfig := descriptor(0x04,
		[]byte{0x6C},       // object type: JPEG
		[]byte{0x04<<2 | 1}, // stream type: visual
		[]byte{0, 0, 0},    // buffer size
		u32(uint32(w.video.Bitrate)),
		u32(uint32(w.video.Bitrate)),
	)
	slConfig := descriptor(0x06, []byte{0x02})
	es := descriptor(0x03,
		u16(0), []byte{0}, // ES id, flags
		decoderConfig,
		slConfig,
	)
	return fullbox("esds", 0, 0, es)
}

// audioSampleEntry builds a sowt (16-bit little-endian PCM) entry.
func (w *Writer) audioSampleEntry() []byte {
	return mkbox("sowt",
		make([]byte, 6), u16(1),
		u32(0), u32(0), // reserved
		u16(uint16(w.audio.Channels)),
		u16(16),        // sample size
		u16(0), u16(0), // pre_defined, reserved
		u32(uint32(w.audio.SampleRate)<<16),
	)
}
