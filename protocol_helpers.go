package main

import "sidbridge/internal/sidcore"

func samplingInterpolate() sidcore.SamplingMethod { return sidcore.SamplingInterpolate }
func samplingResample() sidcore.SamplingMethod     { return sidcore.SamplingResample }

func clockPAL() uint32  { return sidcore.ClockPAL }
func clockNTSC() uint32 { return sidcore.ClockNTSC }

func modelFromByte(b byte) sidcore.ChipModel {
	if b == 0 {
		return sidcore.MOS6581
	}
	return sidcore.MOS8580
}

func modelBit(m sidcore.ChipModel) uint8 {
	if m == sidcore.MOS8580 {
		return 1
	}
	return 0
}

func modelName(m sidcore.ChipModel) string {
	if m == sidcore.MOS8580 {
		return "reSID Device (8580)\x00"
	}
	return "reSID Device (6581)\x00"
}
