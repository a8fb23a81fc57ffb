package align

// observe inspects S[row] at the given 1-based genomic position and updates
// the per-lane score/position bookkeeping.
//
// The full policy maintains three levels per lane: the max score with its
// position list, the best strictly sub-optimal score with its list, and a
// "waiting" sub-max candidate that is only committed once the traversal has
// moved more than the dedup radius past it without the max reappearing.
// All reported positions within a list, and between the two lists, end up
// more than 2*readLen apart.
func (e *engine[T]) observe(row int, pos uint32) {
	s := e.s[row]
	if e.scoreOnly {
		e.maxScore.MaxV(e.maxScore, s)
		return
	}
	radius := 2 * uint32(e.readLen)
	if e.maxOnly {
		if m := s.EqV(e.maxScore); m.Any() {
			for i := 0; i < e.lanes; i++ {
				if !m.Test(i) {
					continue
				}
				if pos > e.maxLastPos[i]+radius {
					e.maxPosList[i] = append(e.maxPosList[i], pos)
				}
				e.maxLastPos[i] = pos
			}
		}
		if m := s.GtV(e.maxScore); m.Any() {
			for i := 0; i < e.lanes; i++ {
				if !m.Test(i) {
					continue
				}
				e.maxScore[i] = s[i]
				e.maxLastPos[i] = pos
				e.maxPosList[i] = append(e.maxPosList[i][:0], pos)
			}
		}
		return
	}

	// Repeat of the current max.
	if m := s.EqV(e.maxScore); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if !m.Test(i) {
				continue
			}
			if pos > e.maxLastPos[i]+radius {
				e.maxPosList[i] = append(e.maxPosList[i], pos)
			}
			e.maxLastPos[i] = pos
			// Any waiting sub-max is now within the radius of a max.
			e.waitingPos[i] = 0
			e.waitingScore[i] = e.subScore[i]
			if n := len(e.subPosList[i]); n > 0 && e.subPosList[i][n-1]+radius > pos {
				e.subPosList[i] = e.subPosList[i][:n-1]
			}
		}
	}

	// New max.
	if m := s.GtV(e.maxScore); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if !m.Test(i) {
				continue
			}
			if n := len(e.maxPosList[i]); n > 0 && e.maxPosList[i][n-1]+radius > pos {
				e.maxPosList[i] = e.maxPosList[i][:n-1]
			}
			if len(e.maxPosList[i]) > 0 {
				// The dethroned max still has far-enough occurrences; it
				// becomes the sub-max.
				e.subScore[i] = e.maxScore[i]
				e.subLastPos[i] = e.maxLastPos[i]
				e.subPosList[i] = append(e.subPosList[i][:0], e.maxPosList[i]...)
			} else if n := len(e.subPosList[i]); n > 0 && e.subPosList[i][n-1]+radius > pos {
				e.subPosList[i] = e.subPosList[i][:n-1]
			}
			e.waitingPos[i] = 0
			e.waitingScore[i] = e.subScore[i]
			e.maxScore[i] = s[i]
			e.maxLastPos[i] = pos
			e.maxPosList[i] = append(e.maxPosList[i][:0], pos)
		}
	}

	// Repeat of the waiting sub-max.
	if m := s.EqV(e.waitingScore); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if m.Test(i) && e.waitingPos[i] > 0 {
				e.waitingLastPos[i] = pos
			}
		}
	}

	// Repeat of the committed sub-max.
	if m := s.EqV(e.subScore); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if !m.Test(i) {
				continue
			}
			nm, ns := len(e.maxPosList[i]), len(e.subPosList[i])
			if nm > 0 && pos > e.maxPosList[i][nm-1]+radius &&
				ns > 0 && pos > e.subPosList[i][ns-1]+radius {
				e.subPosList[i] = append(e.subPosList[i], pos)
			}
			e.subLastPos[i] = pos
		}
	}

	// New waiting sub-max candidate.
	if m := s.GtV(e.subScore) & e.maxScore.GtV(s); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if m.Test(i) && pos > e.maxLastPos[i]+radius &&
				(e.waitingPos[i] == 0 || s[i] > e.waitingScore[i]) {
				e.waitingScore[i] = s[i]
				e.waitingPos[i] = pos
				e.waitingLastPos[i] = pos
			}
		}
	}

	// Commit a waiting sub-max once the radius has cleared it.
	if m := e.waitingScore.GtV(e.subScore); m.Any() {
		for i := 0; i < e.lanes; i++ {
			if m.Test(i) && e.waitingPos[i] > 0 && pos > e.waitingLastPos[i]+radius {
				e.subScore[i] = e.waitingScore[i]
				e.subLastPos[i] = e.waitingLastPos[i]
				e.subPosList[i] = append(e.subPosList[i][:0], e.waitingPos[i])
				e.waitingPos[i] = 0
			}
		}
	}
}

// commitFinalWaiting commits a still-pending sub-max candidate after the
// traversal, provided the max never reappeared past it.
func (e *engine[T]) commitFinalWaiting() {
	if e.scoreOnly || e.maxOnly {
		return
	}
	m := e.waitingScore.GtV(e.subScore)
	if !m.Any() {
		return
	}
	for i := 0; i < e.lanes; i++ {
		if m.Test(i) && e.maxLastPos[i] < e.waitingPos[i] {
			e.subScore[i] = e.waitingScore[i]
			e.subLastPos[i] = e.waitingLastPos[i]
			e.subPosList[i] = append(e.subPosList[i][:0], e.waitingPos[i])
		}
	}
}
