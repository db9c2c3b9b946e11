package mp4

// buildMoof assembles one movie fragment. Data offsets are relative to
// the start of the moof; the caller computes them with a probe pass.
func (w *Writer) buildMoof(videoDataOff, audioDataOff uint32) []byte {
	mfhd := fullbox("mfhd", 0, 0, u32(w.seq))

	parts := [][]byte{mfhd}
	if len(w.vt.pending) > 0 {
		parts = append(parts, buildTraf(videoTrackID, &w.vt, videoDataOff, true))
	}
	if len(w.at.pending) > 0 {
		parts = append(parts, buildTraf(audioTrackID, &w.at, audioDataOff, false))
	}
	return mkbox("moof", parts...)
}

func buildTraf(trackID uint32, t *trackState, dataOff uint32, withFlags bool) []byte {
	// default-base-is-moof
	tfhd := fullbox("tfhd", 0, 0x020000, u32(trackID))
	tfdt := fullbox("tfdt", 1, 0, u64(t.fragBase))

	// data-offset + per-sample duration and size, plus per-sample flags
	// for video so players can seek to sync samples.
	trunFlags := uint32(0x000001 | 0x000100 | 0x000200)
	if withFlags {
		trunFlags |= 0x000400
	}

	trun := [][]byte{
		u32(uint32(len(t.pending))),
		u32(dataOff),
	}
	for _, s := range t.pending {
		trun = append(trun, u32(s.dur), u32(uint32(len(s.data))))
		if withFlags {
			trun = append(trun, u32(s.flags))
		}
	}

	return mkbox("traf", tfhd, tfdt, fullbox("trun", 0, trunFlags, trun...))
}
