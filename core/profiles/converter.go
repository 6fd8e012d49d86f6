package profiles

import (
	"fmt"

	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/model"
)

const converterTolerance = 1e-4

type seg = curve.PolySegment

func lin(lb, ub, a, b float64) seg { return seg{XLB: lb, XUB: ub, Degree: curve.First, A: a, B: b} }

func quad(lb, ub, a, b, c float64) seg {
	return seg{XLB: lb, XUB: ub, Degree: curve.Second, A: a, B: b, C: c}
}

func cubic(lb, ub, a, b, c, d float64) seg {
	return seg{XLB: lb, XUB: ub, Degree: curve.Third, A: a, B: b, C: c, D: d}
}

func quart(lb, ub, a, b, c, d, e float64) seg {
	return seg{XLB: lb, XUB: ub, Degree: curve.Fourth, A: a, B: b, C: c, D: d, E: e}
}

// converterCurves holds the inverter efficiency (vs P2) and power factor
// (vs P3) fits of one equipment class.
type converterCurves struct {
	invEff, invPF []seg
}

var (
	l1Converter = converterCurves{
		invEff: []seg{lin(-20, 0, (1.1-1)/(-20), 1), quad(0, 1.4, -0.09399, 0.26151, 0.71348), lin(1.4, 20, 0, 0.895374)},
		invPF:  []seg{lin(-20, 0, (-1+0.9)/(-20), -0.90), lin(0, 1.3, -0.0138, -0.9793), lin(1.3, 20, 0, -0.99724)},
	}
	l2Converter = converterCurves{
		invEff: []seg{lin(-20, 0, (1.1-1)/(-20), 1), quad(0, 4, -0.005, 0.045, 0.82), lin(4, 20, 0, 0.92)},
		invPF: []seg{
			lin(-20, 0, (-1+0.9)/(-20), -0.90),
			cubic(0, 6, -0.00038737, 0.00591216, -0.03029164, -0.9462841),
			lin(6, 20, 0, -0.9988681),
		},
	}
	dcfc20Converter = converterCurves{
		invEff: []seg{lin(-30, 0, (1.1-1)/(-30), 1), quad(0, 4, -0.005, 0.045, 0.82), lin(4, 30, 0, 0.92)},
		invPF: []seg{
			lin(-30, 0, (-1+0.9)/(-30), -0.90),
			cubic(0, 6, -0.00038737, 0.00591216, -0.03029164, -0.9462841),
			lin(6, 30, 0, -0.9988681),
		},
	}
	dcfc100Converter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quad(0, 10, -0.0023331, 0.04205, 0.7284),
			quad(10, 20, -0.00035233, 0.01454, 0.7755),
			quad(20, 30, -0.00015968, 0.01006, 0.7698),
			quad(30, 40, -0.000083167, 0.007314, 0.7697),
			lin(40, 1000, 0, 0.9292),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			quad(0, 10, 0.0037161, -0.1109, -0.06708),
			lin(10, 18.6, -0.01474, -0.6568),
			lin(18.6, 28, -0.003804, -0.8601),
			lin(28, 42, -0.001603, -0.9218),
			lin(42, 1000, 0, -0.99),
		},
	}
	dcfc500Converter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quad(0, 25, -0.0007134, 0.03554, 0.4724),
			lin(25, 130, 0.0003331, 0.9067),
			lin(130, 1000, 0, 0.95),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			cubic(0, 60, -0.0000053284, 0.00071628, -0.03361, -0.3506),
			lin(60, 80, -0.001034, -0.8775),
			quad(80, 133, 0.0000027985, -0.0008177, -0.9127),
			lin(133, 1000, 0, -0.972),
		},
	}
	dcfc1000Converter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quart(0, 9.9509951, -5.32294e-05, 0.00161341, -0.020375254, 0.153430262, 0.1),
			quart(9.9509951, 49.9549955, -1.41183e-07, 2.19219e-05, -0.001317196, 0.038812335, 0.40120321),
			quart(49.9549955, 124.9624962, -8.95362e-10, 3.96468e-07, -6.90956e-05, 0.005879087, 0.741555738),
			quart(124.9624962, 500, -2.58346e-12, 4.05019e-09, -2.42506e-06, 0.000615186, 0.906293666),
			lin(500, 1000, 0, 0.952430816),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			quart(0, 9.9509951, 3.30449e-08, -1.64406e-06, 4.81836e-05, -0.001229586, -0.96),
			quart(9.9509951, 49.9549955, 1.83122e-09, -3.19941e-07, 2.3503e-05, -0.000997071, -0.960868555),
			quart(49.9549955, 124.9624962, 4.9509e-11, -2.28852e-08, 4.27128e-06, -0.000415058, -0.967886798),
			quart(124.9624962, 500, 2.75481e-13, -4.37287e-10, 2.67801e-07, -7.93935e-05, -0.979114283),
			lin(500, 1000, 0, -0.989303981),
		},
	}
	dcfc2000Converter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quart(0, 3.300330033, -3.07232e-05, 0.000587331, -0.007217139, 0.080972819, 0.1),
			quart(3.300330033, 19.9019902, -1.99155e-06, 0.000137261, -0.004017833, 0.069501611, 0.115784348),
			quart(19.9019902, 99.909991, -8.82395e-09, 2.74024e-06, -0.000329299, 0.019406168, 0.40120321),
			quart(99.909991, 1000, -6.01897e-13, 1.66165e-09, -1.68483e-06, 0.000728381, 0.84911447),
			lin(1000, 10000, 0, 0.952427626),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			quart(0, 19.9019902, 2.0653e-09, -2.05508e-07, 1.20459e-05, -0.000614793, -0.96),
			quart(19.9019902, 99.909991, 1.14451e-10, -3.99927e-08, 5.87574e-06, -0.000498536, -0.960868555),
			quart(99.909991, 249.9249925, 3.09432e-12, -2.86066e-09, 1.06782e-06, -0.000207529, -0.967886798),
			quart(249.9249925, 1000, 1.72176e-14, -5.46609e-11, 6.69504e-08, -3.96968e-05, -0.979114283),
			lin(1000, 10000, 0, -0.989303981),
		},
	}
	dcfc3000Converter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quart(0, 6.600660066, -1.9202e-06, 7.34164e-05, -0.001804285, 0.04048641, 0.1),
			quart(6.600660066, 39.8039804, -1.24472e-07, 1.71577e-05, -0.001004458, 0.034750806, 0.115784348),
			quart(39.8039804, 199.819982, -5.51497e-10, 3.4253e-07, -8.23247e-05, 0.009703084, 0.40120321),
			quart(199.819982, 2000, -3.76186e-14, 2.07707e-10, -4.21206e-07, 0.00036419, 0.84911447),
			lin(2000, 10000, 0, 0.952427626),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			quart(0, 39.8039804, 1.29082e-10, -2.56885e-08, 3.01148e-06, -0.000307397, -0.96),
			quart(39.8039804, 199.819982, 7.1532e-12, -4.99908e-09, 1.46893e-06, -0.000249268, -0.960868555),
			quart(199.819982, 499.849985, 1.93395e-13, -3.57582e-10, 2.66955e-07, -0.000103765, -0.967886798),
			quart(499.849985, 2000, 1.0761e-15, -6.83261e-12, 1.67376e-08, -1.98484e-05, -0.979114283),
			lin(2000, 10000, 0, -0.989303981),
		},
	}
	dcfcMaxConverter = converterCurves{
		invEff: []seg{
			lin(-1000, 0, (1.1-1)/1000, 1),
			quart(0, 9.900990099, -3.79299e-07, 2.1753e-05, -0.000801904, 0.02699094, 0.1),
			quart(9.900990099, 59.7059706, -2.45871e-08, 5.08376e-06, -0.000446426, 0.023167204, 0.115784348),
			quart(59.7059706, 299.729973, -1.08938e-10, 1.0149e-07, -3.65888e-05, 0.006468723, 0.40120321),
			quart(299.729973, 3000, -7.43083e-15, 6.15428e-11, -1.87203e-07, 0.000242794, 0.84911447),
			lin(3000, 10000, 0, 0.952427626),
		},
		invPF: []seg{
			lin(-1000, 0, (0.9-1)/1000, 0.90),
			quart(0, 59.7059706, 2.54976e-11, -7.61141e-09, 1.33843e-06, -0.000204931, -0.96),
			quart(59.7059706, 299.729973, 1.41298e-12, -1.48121e-09, 6.5286e-07, -0.000166179, -0.960868555),
			quart(299.729973, 749.7749775, 3.82014e-14, -1.0595e-10, 1.18647e-07, -6.91763e-05, -0.967886798),
			quart(749.7749775, 3000, 2.12563e-16, -2.02448e-12, 7.43893e-09, -1.32323e-05, -0.979114283),
			lin(3000, 10000, 0, -0.989303981),
		},
	}
)

// converterCurvesFor picks the fit by level and, for DCFC, by the
// equipment's rated power.
func converterCurvesFor(evse model.EVSE) (converterCurves, error) {
	switch evse.Level {
	case model.L1:
		return l1Converter, nil
	case model.L2:
		return l2Converter, nil
	case model.DCFC:
		p := evse.PowerLimitKW
		switch {
		case p <= 20:
			return dcfc20Converter, nil
		case p <= 100:
			return dcfc100Converter, nil
		case p < 500:
			return dcfc500Converter, nil
		case p < 1000:
			return dcfc1000Converter, nil
		case p < 2000:
			return dcfc2000Converter, nil
		case p < 3000:
			return dcfc3000Converter, nil
		default:
			return dcfcMaxConverter, nil
		}
	}
	return converterCurves{}, fmt.Errorf("no converter data for level %s", evse.Level)
}

// ConverterFor builds the AC to DC converter of evse. The apparent power
// rating is the P3 drawn when delivering seP2LimitKW.
func ConverterFor(evse model.EVSE, kind converter.Kind, seP2LimitKW float64) (converter.Converter, error) {
	cc, err := converterCurvesFor(evse)
	if err != nil {
		return converter.Converter{}, err
	}
	invEff, err := curve.NewPolyFunction("inv_eff_from_P2", converterTolerance, false, cc.invEff)
	if err != nil {
		return converter.Converter{}, err
	}
	invPF, err := curve.NewPolyFunction("inv_pf_from_P3", converterTolerance, false, cc.invPF)
	if err != nil {
		return converter.Converter{}, err
	}
	cfg := converter.Config{Kind: kind, InvEffFromP2: invEff, InvPFFromP3: invPF, S3kVAMultiplier: 1}
	if seP2LimitKW > 0 {
		cfg.MaxP3KW = seP2LimitKW / invEff.Value(seP2LimitKW)
	}
	conv, err := converter.New(cfg)
	if err != nil {
		return converter.Converter{}, fmt.Errorf("evse %s: %w", evse.Type, err)
	}
	return conv, nil
}
